package gesel

import (
	"errors"
	"fmt"

	"github.com/LTLA/gesel-manuscript/codec"
	"github.com/LTLA/gesel-manuscript/datasource"
	"github.com/LTLA/gesel-manuscript/internal/db"
	"github.com/LTLA/gesel-manuscript/internal/layout"
)

var (
	// ErrMalformedEncoding indicates a corrupt delta varint posting stream.
	ErrMalformedEncoding = errors.New("gesel: malformed posting encoding")

	// ErrCorruptDatabase indicates a decompression failure or a structural
	// mismatch in a database file.
	ErrCorruptDatabase = errors.New("gesel: corrupt database")

	// ErrUnsupportedVersion indicates a database written with a layout
	// version this client does not speak. No best-effort parsing is
	// attempted.
	ErrUnsupportedVersion = errors.New("gesel: unsupported database version")

	// ErrOutOfRange indicates a gene, set or collection ID outside the
	// bounds of the loaded database.
	ErrOutOfRange = errors.New("gesel: id out of range")

	// ErrNetwork is a transport-level failure from the data source. Nothing
	// is retried internally.
	ErrNetwork = errors.New("gesel: network failure")

	// ErrUnsupportedMode indicates range mode against a server that does
	// not honor Range headers.
	ErrUnsupportedMode = errors.New("gesel: server does not support range requests")

	// ErrNoSource is returned by New when neither a base URL nor a source
	// factory is configured.
	ErrNoSource = errors.New("gesel: no base URL or source configured")
)

// translateError maps errors from the inner packages onto the public kinds
// at the API edge, keeping the cause reachable via errors.Unwrap.
func translateError(err error) error {
	if err == nil {
		return nil
	}
	switch {
	case errors.Is(err, codec.ErrMalformed):
		return fmt.Errorf("%w: %w", ErrMalformedEncoding, err)
	case errors.Is(err, layout.ErrVersion):
		return fmt.Errorf("%w: %w", ErrUnsupportedVersion, err)
	case errors.Is(err, layout.ErrCorrupt),
		errors.Is(err, datasource.ErrCorrupt),
		errors.Is(err, datasource.ErrOutOfBounds):
		return fmt.Errorf("%w: %w", ErrCorruptDatabase, err)
	case errors.Is(err, db.ErrOutOfRange):
		return fmt.Errorf("%w: %w", ErrOutOfRange, err)
	case errors.Is(err, datasource.ErrRangeUnsupported):
		return fmt.Errorf("%w: %w", ErrUnsupportedMode, err)
	case errors.Is(err, datasource.ErrNetwork):
		return fmt.Errorf("%w: %w", ErrNetwork, err)
	}
	return err
}
