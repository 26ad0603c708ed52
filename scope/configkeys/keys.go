package configkeys

const (
	delimiter = "."

	ConfigPrefix = "config"

	ConfigStorePrefix = ConfigPrefix + delimiter + "store"

	ConfigStoreDispatchPrefix     = ConfigStorePrefix + delimiter + "dispatch"
	ConfigStoreDispatchBufferSize = ConfigStoreDispatchPrefix + delimiter + "buffer_size"

	ConfigStoreLogPrefix     = ConfigStorePrefix + delimiter + "log"
	ConfigStoreLogBufferSize = ConfigStoreLogPrefix + delimiter + "buffer_size"

	ConfigStoreConcurrencyPrefix     = ConfigStorePrefix + delimiter + "concurrency"
	ConfigStoreConcurrencyBufferSize = ConfigStoreConcurrencyPrefix + delimiter + "buffer_size"

	ConfigStoreRegistryPrefix = ConfigStorePrefix + delimiter + "registry"
	ConfigStoreRegistryShards = ConfigStoreRegistryPrefix + delimiter + "shards"
)
