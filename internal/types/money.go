// README: Common money value object used across modules.
package types

// Money is an amount in integer minor currency units (cents).
type Money struct {
	Amount   int64
	Currency string
}
