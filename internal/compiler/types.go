package compiler

// typeSpec is the result of parsing a leading type (int, char, void,
// or struct T), before the declarator (name, *, [N]) is known.
type typeSpec struct {
	elemSize  int // 1 for char, 4 for int/struct-pointer/struct
	isStruct  bool
	structIdx int
}

// structFieldGlobalName builds the flat alias name used for global
// struct flattening (spec.md §3): "base.field".
func structFieldGlobalName(base, field string) string {
	return base + "." + field
}
