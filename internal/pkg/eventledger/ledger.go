package eventledger

import (
	"context"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
)

const (
	keyPrefix  = "billing:webhook:"
	defaultTTL = 48 * time.Hour
)

// Ledger 已处理回调事件集合。网关是 at-least-once 投递，
// 这里做快路径去重；最终幂等性仍由订阅上的待定字段校验兜底，
// 所以 redis 故障时调用方可以直接放行。
type Ledger struct {
	rdb *redis.Client
	ttl time.Duration
}

func NewLedger(rdb *redis.Client) *Ledger {
	return &Ledger{rdb: rdb, ttl: defaultTTL}
}

func eventKey(gatewayPaymentID, status string) string {
	return fmt.Sprintf("%s%s:%s", keyPrefix, gatewayPaymentID, status)
}

// MarkProcessed 登记事件，返回是否首次出现
func (l *Ledger) MarkProcessed(ctx context.Context, gatewayPaymentID, status string) (bool, error) {
	return l.rdb.SetNX(ctx, eventKey(gatewayPaymentID, status), 1, l.ttl).Result()
}

// Release 处理失败时撤销登记，允许网关重投后再次处理
func (l *Ledger) Release(ctx context.Context, gatewayPaymentID, status string) error {
	return l.rdb.Del(ctx, eventKey(gatewayPaymentID, status)).Err()
}
