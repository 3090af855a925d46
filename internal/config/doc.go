// Package config loads flix settings from flix.yaml, a .env file and FLIX_
// environment variables, in increasing order of precedence.
//
//	server:
//	  addr: ":8080"
//	  history_size: 100
//	  send_queue: 256
//	log:
//	  level: info
//	  format: text
//	builder:
//	  queue_size: 64
//	  animation:
//	    insert: fade
//	    reload: none
//	    delete: fade
//	archive:
//	  url: s3://snapshots/flix
//	  region: eu-west-1
//
// Nested keys map to variables by upper-casing and joining with
// underscores: FLIX_SERVER_ADDR, FLIX_LOG_LEVEL, FLIX_ARCHIVE_URL.
//
// Usage:
//
//	cfg, err := config.Load(config.WithDir("."))
//	if err != nil {
//	    log.Fatal(err)
//	}
//	logger := cfg.Logger(os.Stderr)
package config
