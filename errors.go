package petclinic

import (
	"goflare.io/petclinic/models"
)

var (
	ErrStoreUnavailable = models.ErrStoreUnavailable
	ErrConfiguration    = models.ErrConfiguration
)

// StoreError is returned by record stores for failed operations.
type StoreError = models.StoreError
