package domain

// Office is read-only reference data from the external catalog
type Office struct {
	ID   string
	Name string
}

// Team is read-only reference data from the external catalog
type Team struct {
	ID       string
	OfficeID string
	Name     string
}

// Agent is read-only reference data from the external catalog
type Agent struct {
	ID       string
	TeamID   string
	OfficeID string
	Name     string
	Email    string
}
