// Package logging provides structured logging using uber/zap.
//
// Production mode writes JSON for machine parsing; development mode writes
// coloured console output. Components receive a *zap.Logger and name it:
//
//	logger := logging.NewDefault()
//	store := project.NewStore(kv, live, logging.Component(logger.Logger, "store"))
package logging
