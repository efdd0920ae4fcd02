package generic

// Void is a unit type for when a value is required but carries no meaning.
type Void = struct{}

func NewVoid() Void {
	return Void{}
}
