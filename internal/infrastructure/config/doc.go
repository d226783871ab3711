// Package config loads and validates glscript configuration.
//
// Values come from built-in defaults, then an optional YAML file, then
// GLSCRIPT_* environment variables. Secrets such as the JWT signing key,
// the admin password hash and broker credentials should be supplied
// through the environment rather than the file.
//
// Usage:
//
//	cfg, err := config.Load("glscript.yaml")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	fmt.Println(cfg.Scripts.Folder)
package config
