package tcl

// EntryStoreOption configures an EntryStoreConfig at construction time,
// following the functional-options pattern used throughout this package
// (see CoordinatorOption).
type EntryStoreOption func(*EntryStoreConfig)

// WithMaxEntries sets the L1 capacity.
func WithMaxEntries(n int) EntryStoreOption {
	return func(c *EntryStoreConfig) { c.MaxEntries = n }
}

// WithEvictionPolicy sets the victim-selection rule used when L1 is full.
func WithEvictionPolicy(p EvictionPolicy) EntryStoreOption {
	return func(c *EntryStoreConfig) { c.EvictionPolicy = p }
}

// WithEvictionBatchSize sets how many entries are evicted per reclaim pass.
func WithEvictionBatchSize(n int) EntryStoreOption {
	return func(c *EntryStoreConfig) { c.EvictionBatchSize = n }
}

// WithDefaultTTL sets the TTL, in milliseconds, applied to entries whose
// own TTL field is zero.
func WithDefaultTTL(ms int64) EntryStoreOption {
	return func(c *EntryStoreConfig) { c.DefaultTTLMS = ms }
}

// WithAutoExtendTTL enables sliding-window TTL extension on access.
func WithAutoExtendTTL(extensionMS, thresholdMS, maxExtensionMS int64) EntryStoreOption {
	return func(c *EntryStoreConfig) {
		c.AutoExtendTTL = true
		c.TTLExtensionMS = extensionMS
		c.TTLExtendThreshold = thresholdMS
		c.MaxTTLExtensionMS = maxExtensionMS
	}
}

// NewEntryStoreConfig builds an EntryStoreConfig from options, starting
// from EntryStore's own defaults.
func NewEntryStoreConfig(opts ...EntryStoreOption) EntryStoreConfig {
	cfg := EntryStoreConfig{}
	for _, opt := range opts {
		opt(&cfg)
	}
	return cfg
}
