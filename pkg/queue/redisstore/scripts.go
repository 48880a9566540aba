package redisstore

import goredis "github.com/redis/go-redis/v9"

// Keys that depend on job attributes are derived inside the scripts from
// ARGV[1] (the prefix), mirroring keys.go.

// insertScript creates the job hash and either pushes the id to its ready list
// or adds a schedule entry.
// KEYS: [1]=job, [2]=ready list or schedule zset, [3]=pending set
// ARGV: [1]=id, [2]=due ms or "" for ready, [3..]=field/value pairs
var insertScript = goredis.NewScript(`
if redis.call('EXISTS', KEYS[1]) == 1 then
	return 0
end
redis.call('HSET', KEYS[1], unpack(ARGV, 3))
if ARGV[2] == '' then
	redis.call('RPUSH', KEYS[2], ARGV[1])
else
	redis.call('ZADD', KEYS[2], ARGV[2], ARGV[1])
end
redis.call('SADD', KEYS[3], ARGV[1])
return 1
`)

// promoteScript moves due schedule entries onto their ready lists.
// KEYS: [1]=schedule zset
// ARGV: [1]=prefix, [2]=now ms, [3]=limit
var promoteScript = goredis.NewScript(`
local ids = redis.call('ZRANGEBYSCORE', KEYS[1], '-inf', ARGV[2], 'LIMIT', 0, tonumber(ARGV[3]))
local promoted = 0
for _, id in ipairs(ids) do
	if redis.call('ZREM', KEYS[1], id) == 1 then
		local jk = ARGV[1] .. ':job:' .. id
		local fields = redis.call('HMGET', jk, 'status', 'queue')
		if fields[1] == 'pending' then
			redis.call('RPUSH', ARGV[1] .. ':ready:' .. fields[2], id)
			promoted = promoted + 1
		end
	end
end
return promoted
`)

// requeueScript returns running jobs whose lock expired to their ready lists.
// KEYS: [1]=inflight zset
// ARGV: [1]=prefix, [2]=now ms
var requeueScript = goredis.NewScript(`
local ids = redis.call('ZRANGEBYSCORE', KEYS[1], '-inf', ARGV[2])
local requeued = 0
for _, id in ipairs(ids) do
	redis.call('ZREM', KEYS[1], id)
	local jk = ARGV[1] .. ':job:' .. id
	local fields = redis.call('HMGET', jk, 'status', 'queue', 'operation')
	if fields[1] == 'running' then
		redis.call('HSET', jk, 'status', 'pending')
		redis.call('HDEL', jk, 'locked_by', 'locked_until')
		redis.call('RPUSH', ARGV[1] .. ':ready:' .. fields[2], id)
		redis.call('SADD', ARGV[1] .. ':pending:' .. fields[3], id)
		requeued = requeued + 1
	end
end
return requeued
`)

// claimScript pops ready ids until one whose job is still pending, then marks
// it running under the caller's lock. Stale ids are dropped.
// KEYS: ready lists in priority order
// ARGV: [1]=prefix, [2]=worker id, [3]=now, [4]=lock until, [5]=lock until ms
var claimScript = goredis.NewScript(`
for _, rk in ipairs(KEYS) do
	while true do
		local id = redis.call('LPOP', rk)
		if not id then
			break
		end
		local jk = ARGV[1] .. ':job:' .. id
		local fields = redis.call('HMGET', jk, 'status', 'operation')
		if fields[1] == 'pending' then
			redis.call('HSET', jk, 'status', 'running', 'started_at', ARGV[3], 'locked_by', ARGV[2], 'locked_until', ARGV[4])
			redis.call('ZADD', ARGV[1] .. ':inflight', ARGV[5], id)
			redis.call('SREM', ARGV[1] .. ':pending:' .. fields[2], id)
			return id
		end
	end
end
return false
`)

// ownerCheck is shared by the scripts that act on a claimed job.
// Returns -1 for a missing job and 0 when another worker holds it.
const ownerCheck = `
if redis.call('EXISTS', KEYS[1]) == 0 then
	return -1
end
local owner = redis.call('HMGET', KEYS[1], 'status', 'locked_by')
if owner[1] ~= 'running' or owner[2] ~= ARGV[1] then
	return 0
end
`

// finishScript records a terminal status and starts the retention clock.
// KEYS: [1]=job, [2]=inflight zset
// ARGV: [1]=worker id, [2]=job id, [3]=status, [4]=finished at, [5]=ttl ms, [6]=error or ""
var finishScript = goredis.NewScript(ownerCheck + `
redis.call('HSET', KEYS[1], 'status', ARGV[3], 'finished_at', ARGV[4])
if ARGV[6] ~= '' then
	redis.call('HSET', KEYS[1], 'error', ARGV[6])
end
redis.call('HDEL', KEYS[1], 'locked_by', 'locked_until')
redis.call('ZREM', KEYS[2], ARGV[2])
redis.call('PEXPIRE', KEYS[1], ARGV[5])
return 1
`)

// retryScript returns a claimed job to pending with a new schedule entry.
// KEYS: [1]=job, [2]=inflight zset, [3]=schedule zset
// ARGV: [1]=worker id, [2]=job id, [3]=error, [4]=due at, [5]=due ms, [6]=prefix
var retryScript = goredis.NewScript(ownerCheck + `
redis.call('HSET', KEYS[1], 'status', 'pending', 'error', ARGV[3], 'due_at', ARGV[4])
redis.call('HINCRBY', KEYS[1], 'retry_count', 1)
redis.call('HDEL', KEYS[1], 'locked_by', 'locked_until')
redis.call('ZREM', KEYS[2], ARGV[2])
redis.call('ZADD', KEYS[3], ARGV[5], ARGV[2])
local operation = redis.call('HGET', KEYS[1], 'operation')
redis.call('SADD', ARGV[6] .. ':pending:' .. operation, ARGV[2])
return 1
`)

// extendScript moves the lock deadline of a claimed job.
// KEYS: [1]=job, [2]=inflight zset
// ARGV: [1]=worker id, [2]=job id, [3]=until, [4]=until ms
var extendScript = goredis.NewScript(ownerCheck + `
redis.call('HSET', KEYS[1], 'locked_until', ARGV[3])
redis.call('ZADD', KEYS[2], ARGV[4], ARGV[2])
return 1
`)
