// README: Fare rate definition.
package pricing

// Rate holds the fare constants in minor currency units: a flat base fare
// plus a per-kilometre charge.
type Rate struct {
	BaseFare int64
	PerKm    int64
	Currency string
}
