package eventcounter

import "reflect"

// KeyOf returns the event key for a value: the import path and name of its
// concrete type, with pointer indirections removed. Unnamed types use their
// type literal, and nil maps to "<nil>".
//
//	KeyOf(&fs.PathError{}) == "io/fs.PathError"
//	KeyOf(errors.New(""))  == "errors.errorString"
func KeyOf(v any) string {
	if v == nil {
		return "<nil>"
	}
	typ := reflect.TypeOf(v)
	for typ.Kind() == reflect.Pointer {
		typ = typ.Elem()
	}
	if typ.Name() == "" {
		return typ.String()
	}
	if typ.PkgPath() == "" {
		return typ.Name()
	}
	return typ.PkgPath() + "." + typ.Name()
}
