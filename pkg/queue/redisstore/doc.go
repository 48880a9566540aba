// Package redisstore implements queue.Storage on Redis.
//
// Layout, with the default "{queue}" prefix:
//
//	{queue}:job:<id>             hash, one field per job attribute
//	{queue}:ready:<name>         list, FIFO of runnable job ids
//	{queue}:schedule             sorted set, job id scored by due time (unix ms)
//	{queue}:inflight             sorted set, running job id scored by lock deadline
//	{queue}:pending:<operation>  set, ids of pending jobs per operation
//
// Every state transition runs as a Lua script, so promotion (ZREM is the
// claim) and execution claims (status check-and-set) are atomic. Scripts
// build keys from the prefix at run time; the braces in the default prefix
// are a cluster hash tag that keeps every key in one slot.
//
// Finished job hashes get a PEXPIRE equal to the result TTL, so retention
// needs no sweeper.
package redisstore
