package cache

import "strings"

const prefix = "camper:"

func clean(part string) string {
	return strings.ToLower(strings.TrimSpace(part))
}

// KeyPriceTable is the key holding the last good raw price sheet of a product.
func KeyPriceTable(product string) string {
	return prefix + "pricetable:" + clean(product)
}

// KeySession is the key holding a persisted configuration session.
func KeySession(id string) string {
	return prefix + "session:" + clean(id)
}

// KeySessionLock guards mutations of one session.
func KeySessionLock(id string) string {
	return "lock:session:" + clean(id)
}

// KeyWebhookNonce records a delivered webhook nonce for replay protection.
func KeyWebhookNonce(nonce string) string {
	return prefix + "webhook:nonce:" + strings.TrimSpace(nonce)
}
