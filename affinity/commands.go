package affinity

// Groups is a set of explicit registrations. Every name in a group gets the
// group's affinity without probing the primary.
type Groups struct {
	Replica   []string
	Primary   []string
	Broadcast []string
}

// DefaultGroups returns the registrations every table starts from.
func DefaultGroups() Groups {
	return Groups{
		Replica: []string{
			"get", "mget", "exists", "strlen", "getrange", "substr",
			"hget", "hgetall", "hmget", "hkeys", "hvals", "hlen", "hexists",
			"lrange", "llen", "lindex",
			"smembers", "sismember", "scard", "srandmember",
			"sunion", "sinter", "sdiff",
			"zrange", "zrevrange", "zrangebyscore", "zrevrangebyscore",
			"zscore", "zrank", "zrevrank", "zcard", "zcount",
			"type", "ttl", "pttl", "keys", "scan", "sscan", "hscan", "zscan",
			"dbsize", "randomkey", "bitcount", "getbit", "dump",
		},
		Primary: []string{
			"multi", "exec", "discard", "watch", "unwatch",
			"eval", "evalsha",
		},
		Broadcast: []string{
			"select", "auth", "client", "quit", "script",
		},
	}
}

// ReadOnlyCommands is the reference set consulted when an operation was not
// registered explicitly. A supported name found here resolves to Replica,
// any other supported name resolves to Primary.
var ReadOnlyCommands = []string{
	"get", "mget", "exists", "strlen", "getrange", "substr", "lcs",
	"hget", "hgetall", "hmget", "hkeys", "hvals", "hlen", "hexists",
	"hstrlen", "hrandfield",
	"lrange", "llen", "lindex", "lpos",
	"smembers", "sismember", "smismember", "scard", "srandmember",
	"sunion", "sinter", "sintercard", "sdiff",
	"zrange", "zrevrange", "zrangebyscore", "zrevrangebyscore",
	"zrangebylex", "zrevrangebylex", "zlexcount", "zscore", "zmscore",
	"zrank", "zrevrank", "zcard", "zcount", "zrandmember",
	"zunion", "zinter", "zdiff",
	"type", "ttl", "pttl", "expiretime", "pexpiretime", "object",
	"keys", "scan", "sscan", "hscan", "zscan",
	"dbsize", "randomkey", "bitcount", "bitpos", "getbit", "bitfield_ro",
	"dump", "sort_ro",
	"geodist", "geohash", "geopos", "georadius_ro", "georadiusbymember_ro",
	"geosearch",
	"pfcount",
	"xrange", "xrevrange", "xlen", "xread", "xinfo",
	"memory", "echo", "ping", "time", "lastsave",
}
