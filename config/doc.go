// Package config reads the JSON files that hold broker, blob storage and API
// credentials.
//
// All files live in one directory, ~/.config/exchange unless overridden by
// --config-dir or EXCHANGE_CONFIG_DIR:
//
//	kafka_config.json   bootstrap_servers, group_id, timeouts, optional SASL/TLS
//	azure_config.json   storage account, key, default container and blob
//	api_config.json     name -> {url, apikey, description, category}
//	nats_config.json    optional, for the NATS object store backend
//
// Every read is size and depth limited, then validated against an embedded
// JSON Schema before it is decoded:
//
//	loader := config.Load(dir)
//	kafka, err := loader.Kafka()
//	api, err := loader.API("weather")
//
// Environment variables with the EXCHANGE_ prefix override single fields
// after the file is loaded (EXCHANGE_KAFKA_BOOTSTRAP_SERVERS,
// EXCHANGE_AZURE_ACCOUNT_KEY, EXCHANGE_NATS_URLS and so on).
//
// Render prints a file with secrets masked, Init writes starter templates and
// Edit opens a file in $VISUAL, $EDITOR or nano.
package config
