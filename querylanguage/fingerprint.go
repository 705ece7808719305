package querylanguage

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"

	"github.com/vmihailenco/msgpack/v5"
)

// Fingerprint is a value-equal digest of a parameterized expression
// shape. Two fingerprints are equal iff the underlying trees are
// structurally identical: parameter references hash by generated name,
// never by bound value, so interchangeable queries collapse to the same
// fingerprint.
type Fingerprint string

// Hash computes the structural fingerprint of the expression. Tokens of
// the node walk are encoded with msgpack before digesting: the
// length-prefixed encoding keeps adjacent tokens from running together,
// which plain string concatenation would allow.
func Hash(e Expr) Fingerprint {
	h := sha256.New()
	enc := msgpack.NewEncoder(h)
	// Map-typed literals must digest identically across runs.
	enc.SetSortMapKeys(true)
	hashExpr(enc, e)
	return Fingerprint(hex.EncodeToString(h.Sum(nil)))
}

func hashExpr(enc *msgpack.Encoder, e Expr) {
	if e == nil {
		_ = enc.EncodeNil()
		return
	}
	_ = enc.EncodeInt8(int8(e.Kind()))
	switch x := e.(type) {
	case *Value:
		hashValue(enc, x.V)
	case *Param:
		_ = enc.EncodeString(x.Name)
	case *Field:
		_ = enc.EncodeString(x.Name)
	case *Member:
		_ = enc.EncodeString(x.Name)
		hashExpr(enc, x.X)
	case *Call:
		_ = enc.EncodeString(x.Fn)
		hashExpr(enc, x.X)
		_ = enc.EncodeArrayLen(len(x.Args))
		for _, a := range x.Args {
			hashExpr(enc, a)
		}
	case *Lambda:
		hashExpr(enc, x.Body)
	case *Binary:
		_ = enc.EncodeInt8(int8(x.Op))
		hashExpr(enc, x.X)
		hashExpr(enc, x.Y)
	case *Unary:
		_ = enc.EncodeInt8(int8(x.Op))
		hashExpr(enc, x.X)
	case *Nary:
		_ = enc.EncodeInt8(int8(x.Op))
		_ = enc.EncodeArrayLen(len(x.Xs))
		for _, a := range x.Xs {
			hashExpr(enc, a)
		}
	case *Func:
		_ = enc.EncodeString(x.Desc.Qualified())
		_ = enc.EncodeArrayLen(len(x.Args))
		for _, a := range x.Args {
			hashExpr(enc, a)
		}
	}
}

// hashValue encodes a literal structurally. Composite values recurse
// element-wise with a length prefix, so slices whose elements merely
// format alike ([]any{"a", "b"} vs []any{"a b"}) stay distinct. The
// dynamic type tags the token, keeping equal encodings of different Go
// types apart.
func hashValue(enc *msgpack.Encoder, v any) {
	_ = enc.EncodeString(fmt.Sprintf("%T", v))
	if vs, ok := v.([]any); ok {
		_ = enc.EncodeArrayLen(len(vs))
		for _, e := range vs {
			hashValue(enc, e)
		}
		return
	}
	if err := enc.Encode(v); err != nil {
		_ = enc.EncodeString(fmt.Sprintf("%v", v))
	}
}
