package local

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	rotateStatusNotFound int64 = 0
	rotateStatusMismatch int64 = 2
	rotateStatusRotated  int64 = 3
)

const createAccountScript = `
if redis.call("EXISTS", KEYS[1]) == 1 then
  return 0
end
redis.call("HSET", KEYS[1], "id", ARGV[1], "email", ARGV[2], "name", ARGV[3], "avatar", ARGV[4], "hash", ARGV[5], "confirmed", ARGV[6])
return 1
`

var createAccountLua = redis.NewScript(createAccountScript)

const confirmAccountScript = `
if redis.call("EXISTS", KEYS[1]) == 0 then
  return 0
end
redis.call("HSET", KEYS[1], "confirmed", "1")
return 1
`

var confirmAccountLua = redis.NewScript(confirmAccountScript)

// A family whose stored hash does not match the presented secret was already
// rotated past it, so the whole family is dropped.
const rotateRefreshScript = `
local current = redis.call("HGET", KEYS[1], "hash")
if not current then
  return {0, "", ""}
end
local uid = redis.call("HGET", KEYS[1], "uid") or ""
local email = redis.call("HGET", KEYS[1], "email") or ""
if current ~= ARGV[1] then
  redis.call("DEL", KEYS[1])
  return {2, uid, email}
end
redis.call("HSET", KEYS[1], "hash", ARGV[2])
redis.call("PEXPIRE", KEYS[1], ARGV[3])
return {3, uid, email}
`

var rotateRefreshLua = redis.NewScript(rotateRefreshScript)

var errAccountExists = errors.New("account exists")

type account struct {
	ID        string
	Email     string
	Name      string
	Avatar    string
	Hash      string
	Confirmed bool
}

type rotation struct {
	status int64
	uid    string
	email  string
}

type store struct {
	redis  redis.UniversalClient
	prefix string
	ttl    time.Duration
}

func (s *store) accountKey(email string) string {
	return s.prefix + ":acct:" + email
}

func (s *store) familyKey(family string) string {
	return s.prefix + ":fam:" + family
}

func (s *store) userFamiliesKey(uid string) string {
	return s.prefix + ":uf:" + uid
}

func (s *store) createAccount(ctx context.Context, a account) error {
	confirmed := "0"
	if a.Confirmed {
		confirmed = "1"
	}
	created, err := createAccountLua.Run(ctx, s.redis,
		[]string{s.accountKey(a.Email)},
		a.ID, a.Email, a.Name, a.Avatar, a.Hash, confirmed,
	).Int64()
	if err != nil {
		return fmt.Errorf("create account: %w", err)
	}
	if created == 0 {
		return errAccountExists
	}
	return nil
}

func (s *store) loadAccount(ctx context.Context, email string) (account, bool, error) {
	fields, err := s.redis.HGetAll(ctx, s.accountKey(email)).Result()
	if err != nil {
		return account{}, false, fmt.Errorf("load account: %w", err)
	}
	if len(fields) == 0 || fields["id"] == "" {
		return account{}, false, nil
	}
	return account{
		ID:        fields["id"],
		Email:     fields["email"],
		Name:      fields["name"],
		Avatar:    fields["avatar"],
		Hash:      fields["hash"],
		Confirmed: fields["confirmed"] == "1",
	}, true, nil
}

// updateHash replaces the stored password hash after a parameter upgrade.
func (s *store) updateHash(ctx context.Context, email, hash string) error {
	if err := s.redis.HSet(ctx, s.accountKey(email), "hash", hash).Err(); err != nil {
		return fmt.Errorf("update hash: %w", err)
	}
	return nil
}

func (s *store) confirmAccount(ctx context.Context, email string) (bool, error) {
	ok, err := confirmAccountLua.Run(ctx, s.redis, []string{s.accountKey(email)}).Int64()
	if err != nil {
		return false, fmt.Errorf("confirm account: %w", err)
	}
	return ok == 1, nil
}

func (s *store) saveFamily(ctx context.Context, family, uid, email string, secretHash [32]byte) error {
	famKey := s.familyKey(family)
	_, err := s.redis.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HSet(ctx, famKey, "uid", uid, "email", email, "hash", hex.EncodeToString(secretHash[:]))
		pipe.PExpire(ctx, famKey, s.ttl)
		pipe.SAdd(ctx, s.userFamiliesKey(uid), family)
		return nil
	})
	if err != nil {
		return fmt.Errorf("save family: %w", err)
	}
	return nil
}

func (s *store) rotateFamily(ctx context.Context, family string, expected, next [32]byte) (rotation, error) {
	res, err := rotateRefreshLua.Run(ctx, s.redis,
		[]string{s.familyKey(family)},
		hex.EncodeToString(expected[:]),
		hex.EncodeToString(next[:]),
		strconv.FormatInt(s.ttl.Milliseconds(), 10),
	).Slice()
	if err != nil {
		return rotation{}, fmt.Errorf("rotate family: %w", err)
	}
	if len(res) != 3 {
		return rotation{}, fmt.Errorf("rotate family: unexpected reply length %d", len(res))
	}
	status, ok := res[0].(int64)
	if !ok {
		return rotation{}, fmt.Errorf("rotate family: unexpected status %T", res[0])
	}
	uid, _ := res[1].(string)
	email, _ := res[2].(string)
	return rotation{status: status, uid: uid, email: email}, nil
}

func (s *store) dropFamily(ctx context.Context, family, uid string) error {
	_, err := s.redis.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, s.familyKey(family))
		if uid != "" {
			pipe.SRem(ctx, s.userFamiliesKey(uid), family)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("drop family: %w", err)
	}
	return nil
}

// revokeUser deletes every refresh family the user holds and reports how many
// were live.
func (s *store) revokeUser(ctx context.Context, uid string) (int, error) {
	setKey := s.userFamiliesKey(uid)
	families, err := s.redis.SMembers(ctx, setKey).Result()
	if err != nil {
		return 0, fmt.Errorf("list families: %w", err)
	}

	keys := make([]string, 0, len(families)+1)
	for _, family := range families {
		keys = append(keys, s.familyKey(family))
	}
	keys = append(keys, setKey)

	var deleted *redis.IntCmd
	_, err = s.redis.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		deleted = pipe.Del(ctx, keys...)
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("revoke families: %w", err)
	}

	n := int(deleted.Val())
	if len(families) > 0 && n > 0 {
		n-- // the set itself
	}
	return n, nil
}

func (s *store) liveFamilies(ctx context.Context, uid string) (int64, error) {
	n, err := s.redis.SCard(ctx, s.userFamiliesKey(uid)).Result()
	if err != nil {
		return 0, fmt.Errorf("count families: %w", err)
	}
	return n, nil
}
