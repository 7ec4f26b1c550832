package workflow

import (
	"fmt"

	"gorm.io/gorm"
)

// AcquireDocumentPostingLock serializes posting per fulfillment order across
// instances using MySQL advisory locks. Concurrent postings on different
// documents proceed independently.
// NOTE: GET_LOCK is connection-scoped, so this must be called on the same
// *gorm.DB that will do the posting transaction.
func AcquireDocumentPostingLock(tx *gorm.DB, businessId string, orderId int) error {
	lockName := fmt.Sprintf("fulfillment:%s:%d", businessId, orderId)
	var ok int
	if err := tx.Raw("SELECT GET_LOCK(?, 30)", lockName).Scan(&ok).Error; err != nil {
		return err
	}
	if ok != 1 {
		return fmt.Errorf("could not acquire posting lock for order id=%d", orderId)
	}
	return nil
}

// ReleaseDocumentPostingLock must run while the transaction is still open.
// The advisory lock belongs to the connection, not the transaction; after
// commit the gorm tx can no longer reach it and the pooled connection would
// keep holding the lock.
func ReleaseDocumentPostingLock(tx *gorm.DB, businessId string, orderId int) {
	lockName := fmt.Sprintf("fulfillment:%s:%d", businessId, orderId)
	var _ok int
	_ = tx.Raw("SELECT RELEASE_LOCK(?)", lockName).Scan(&_ok).Error
}
