package port

import "context"

// LOINCEntry is one row of the LOINC reference table.
type LOINCEntry struct {
	Code      string `db:"code"`
	Component string `db:"component"`
	LongName  string `db:"long_common_name"`
	ShortName string `db:"short_name"`
	Class     string `db:"class"`
	Units     string `db:"example_units"`
	// Synonyms is a semicolon separated list of alternative names.
	Synonyms string `db:"synonyms"`
}

// LOINCRepository defines the contract for LOINC reference data access.
type LOINCRepository interface {
	LoadAll(ctx context.Context) ([]LOINCEntry, error)
}
