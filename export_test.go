package readsplit

// SetFirstRead places the read cursor so that the next read-only operation
// goes to ReadPool()[idx].
func SetFirstRead(r *Router, idx int) {
	r.rr.setFirst(idx)
}

// ReadCursor returns the position of the last node picked from the read pool.
func ReadCursor(r *Router) int {
	return r.rr.cursor()
}

// HoldTransactionLock takes the transaction lock the way a begin does and
// returns its release.
func HoldTransactionLock(r *Router) func() {
	r.txn.mutex.Lock()
	return r.txn.mutex.Unlock
}
