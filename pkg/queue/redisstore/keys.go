package redisstore

func (s *Storage) jobKey(id string) string { return s.prefix + ":job:" + id }

func (s *Storage) readyKey(queue string) string { return s.prefix + ":ready:" + queue }

func (s *Storage) pendingKey(operation string) string { return s.prefix + ":pending:" + operation }

func (s *Storage) scheduleKey() string { return s.prefix + ":schedule" }

func (s *Storage) inflightKey() string { return s.prefix + ":inflight" }
