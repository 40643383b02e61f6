package domain

import "github.com/uptrace/bun"

// UserSummary is the display view of a user record owned by the user service.
type UserSummary struct {
	bun.BaseModel `bun:"table:users,alias:u"`

	ID        int64  `bun:"id,pk"`
	Username  string `bun:"username"`
	FirstName string `bun:"first_name"`
	LastName  string `bun:"last_name"`
}

// CabinetSummary is the display view of a cabinet record.
type CabinetSummary struct {
	bun.BaseModel `bun:"table:cabinets,alias:c"`

	ID      int64  `bun:"id,pk"`
	Name    string `bun:"name"`
	Address string `bun:"address"`
}
