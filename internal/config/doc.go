// Package config provides configuration management for the greeting server.
//
// Configuration is loaded from environment variables using the env package.
// The defaults reproduce a plain deployment: bind 0.0.0.0:5000, debug off,
// admin and gRPC listeners disabled.
//
// Example usage:
//
//	cfg, err := config.Load()
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	fmt.Printf("HTTP server will listen on %s\n", cfg.GetHTTPAddr())
package config
