// Package config loads Relay's YAML configuration.
//
// Values are resolved in this order, later overriding earlier:
//
//  1. Defaults (defaults.go)
//  2. The YAML file
//  3. RELAY_* environment variables (e.g. RELAY_STORAGE_SQLITE_PATH)
//  4. Validation, which reports every invalid field at once
//
// Typical use:
//
//	cfg, err := config.LoadConfigWithEnvOverrides("relay.yaml")
//	if err != nil {
//	    var verr config.ValidationError
//	    if errors.As(err, &verr) {
//	        for _, fe := range verr.Errors {
//	            fmt.Println(fe.Field, fe.Message)
//	        }
//	    }
//	    return err
//	}
//
// Initialize/GetConfig keep a process-wide copy for cmd/relay. Library
// packages receive the sections they need as arguments.
package config
