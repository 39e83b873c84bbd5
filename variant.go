package em4x70

// Variant distinguishes the two tag families Identify can tell apart:
// an EM4170 answers the UM2 command, a V4070/EM4070 does not.
type Variant int

const (
	VariantV4070 Variant = iota
	VariantEM4170
)

func (v Variant) String() string {
	if v == VariantEM4170 {
		return "EM4170"
	}
	return "V4070"
}
