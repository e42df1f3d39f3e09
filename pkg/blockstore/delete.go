package blockstore

// Delete removes the value stored under the bucket/key pair. Deleting a
// block unlinks the whole group file, taking the sibling blocks with it.
func (b *Backend) Delete(bucket, key []byte) error {
	if id, ok := b.blockID(bucket, key); ok {
		mObjectOps.WithLabelValues("delete", "block").Inc()
		return b.store.DeleteBlock(bucket, id)
	}

	mObjectOps.WithLabelValues("delete", "plain").Inc()

	return b.store.DeletePlain(bucket, key)
}
