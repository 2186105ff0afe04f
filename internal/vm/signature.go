package vm

import "strings"

var primitiveNames = map[byte]string{
	'B': "byte",
	'C': "char",
	'D': "double",
	'F': "float",
	'I': "int",
	'J': "long",
	'S': "short",
	'Z': "boolean",
	'V': "void",
}

// ClassName turns a JNI type signature into its Java source form:
// "Ljava/lang/String;" is "java.lang.String", "[[I" is "int[][]". Input
// that is not a well-formed signature is returned unchanged.
func ClassName(sig string) string {
	elem, dims, ok := parseSignature(sig)
	if !ok {
		return sig
	}
	return elem + strings.Repeat("[]", dims)
}

// OuterClassName is ClassName with array dimensions and nested class
// suffixes dropped: "[Lcom/acme/Outer$Inner;" is "com.acme.Outer".
// Malformed input yields "".
func OuterClassName(sig string) string {
	elem, _, ok := parseSignature(sig)
	if !ok {
		return ""
	}
	if i := strings.IndexByte(elem, '$'); i > 0 {
		elem = elem[:i]
	}
	return elem
}

func parseSignature(sig string) (elem string, dims int, ok bool) {
	for dims < len(sig) && sig[dims] == '[' {
		dims++
	}
	rest := sig[dims:]
	if rest == "" {
		return "", 0, false
	}
	if len(rest) == 1 {
		name, ok := primitiveNames[rest[0]]
		if !ok || (name == "void" && dims > 0) {
			return "", 0, false
		}
		return name, dims, true
	}
	if rest[0] != 'L' || rest[len(rest)-1] != ';' || len(rest) < 3 {
		return "", 0, false
	}
	return strings.ReplaceAll(rest[1:len(rest)-1], "/", "."), dims, true
}
