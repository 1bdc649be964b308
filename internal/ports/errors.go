package ports

// ErrNotFound is returned by repositories when the requested row does not
// exist. Adapters translate their driver's sentinel into this one.
var ErrNotFound = errString("not found")

type errString string

func (e errString) Error() string { return string(e) }
