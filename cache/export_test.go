package cache

// Hooks for the external contract tests in package cache_test.
var (
	NewStubRedisClient  = func() RedisClient { return newStubRedisClient() }
	NewStubNATSKeyValue = func() NATSKeyValue { return newStubNATSKeyValue("recommendations") }
	NewStubDynamo       = func() DynamoAPI { return newDynStub() }
)
