// Package config handles loading and validating mqttwaker configuration.
//
// This package manages:
//   - Loading configuration from YAML files
//   - Overriding with environment variables
//   - Validation of structural errors
//   - Default value handling
//
// Security Considerations:
//   - The broker password should be set via MQTTWAKER_MQTT_PASSWORD
//   - The config file should have restricted permissions (0600)
//
// Performance Characteristics:
//   - Configuration is loaded once per activation
//   - Reloading (SIGHUP) produces a new Config; existing values are never mutated
//
// Usage:
//
//	cfg, err := config.Load("configs/config.yaml")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	fmt.Println(cfg.MQTT.BrokerURI)
package config
