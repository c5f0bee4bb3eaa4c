// Package redis connects the service to Redis, which backs the shared
// tenant resolution cache (tenant.RedisCache) when TENANT_CACHE=redis.
//
//	client, err := redis.Connect(ctx, cfg.Redis)
//	if err != nil {
//		return err
//	}
//	defer client.Close()
//
//	cache := tenant.NewRedisCache(client, cfg.Redis.KeyPrefix+"tenant:", ttl)
//
// Probe adapts the client for the readiness endpoint.
package redis
