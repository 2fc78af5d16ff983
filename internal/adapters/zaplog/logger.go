package zaplog

import (
	"github.com/realtyflow/settlement-engine/internal/domain/ports"
	"go.uber.org/zap"
)

// Adapter implements ports.Logger over a *zap.Logger
type Adapter struct {
	logger *zap.Logger
}

// New wraps an existing zap logger
func New(logger *zap.Logger) *Adapter {
	return &Adapter{logger: logger}
}

// NewDevelopment creates an adapter with a development zap config
func NewDevelopment() (*Adapter, error) {
	logger, err := zap.NewDevelopment()
	if err != nil {
		return nil, err
	}
	return &Adapter{logger: logger}, nil
}

// NewProduction creates an adapter with a production zap config
func NewProduction() (*Adapter, error) {
	logger, err := zap.NewProduction()
	if err != nil {
		return nil, err
	}
	return &Adapter{logger: logger}, nil
}

func (a *Adapter) Info(msg string, fields ...ports.Field) {
	a.logger.Info(msg, convert(fields)...)
}

func (a *Adapter) Error(msg string, fields ...ports.Field) {
	a.logger.Error(msg, convert(fields)...)
}

func (a *Adapter) Warn(msg string, fields ...ports.Field) {
	a.logger.Warn(msg, convert(fields)...)
}

func (a *Adapter) Debug(msg string, fields ...ports.Field) {
	a.logger.Debug(msg, convert(fields)...)
}

// Sync flushes buffered log entries
func (a *Adapter) Sync() error {
	return a.logger.Sync()
}

func convert(fields []ports.Field) []zap.Field {
	zapFields := make([]zap.Field, 0, len(fields))
	for _, f := range fields {
		switch v := f.Value.(type) {
		case string:
			zapFields = append(zapFields, zap.String(f.Key, v))
		case int:
			zapFields = append(zapFields, zap.Int(f.Key, v))
		case int64:
			zapFields = append(zapFields, zap.Int64(f.Key, v))
		case bool:
			zapFields = append(zapFields, zap.Bool(f.Key, v))
		case error:
			zapFields = append(zapFields, zap.NamedError(f.Key, v))
		default:
			zapFields = append(zapFields, zap.Any(f.Key, v))
		}
	}
	return zapFields
}
