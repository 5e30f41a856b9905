package gormstorage_test

import (
	"github.com/anchorwatch/anchorsim/internal/storage"
	gormstorage "github.com/anchorwatch/anchorsim/internal/storage/gorm"
)

// Compile-time interface check
var _ storage.Backend = (*gormstorage.Backend)(nil)
