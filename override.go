package ferry

// HostValuer lets a type bypass reflection-based extraction.
//
// When a value implements HostValuer, extraction calls HostValue and
// converts the result in its place. The result may itself be any
// extractable value, including another HostValuer. HostValue runs while the
// host lock is held and must not retain the returned value for mutation.
type HostValuer interface {
	HostValue() (any, error)
}

// ObjectIDHex is an ObjectId in its 24-character hexadecimal form. It is
// validated during extraction; a malformed value fails with
// InvalidObjectId.
type ObjectIDHex string

// ObjectIDBytes is an ObjectId in its raw form. It must be exactly 12
// bytes long.
type ObjectIDBytes []byte
