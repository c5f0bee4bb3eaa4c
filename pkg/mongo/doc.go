// Package mongo connects to MongoDB, the optional shared audit store
// (AUDIT_STORE=mongo, see audit.MongoStore).
//
//	db, err := mongo.NewWithDatabase(ctx, cfg.Mongo)
//	if err != nil {
//		return err
//	}
//	store := audit.NewMongoStore(db, "audit_logs")
package mongo
