package model

import "time"

type AuditAction string

const (
	//店舗管理者が注文ステータスを更新した
	AuditActionUpdateOrderStatus AuditAction = "UPDATE_ORDER_STATUS"
	//配送イベントを追加した
	AuditActionAddShipmentEvent AuditAction = "ADD_SHIPMENT_EVENT"
)

type AuditResourceType string

const (
	AuditResourceOrder AuditResourceType = "order"
)

// 「誰が」「どの注文を」「どう変えたか」を残す。
type AuditLog struct {
	ID           int64             `gorm:"primaryKey;autoIncrement" json:"id"`
	ActorUserID  int64             `gorm:"not null;index" json:"actor_user_id"`
	Action       AuditAction       `gorm:"type:varchar(50);not null;index" json:"action"`
	ResourceType AuditResourceType `gorm:"type:varchar(50);not null;index" json:"resource_type"`
	ResourceID   int64             `gorm:"not null;index" json:"resource_id"`

	//JSON文字列で保存する。
	BeforeJSON string `gorm:"type:text" json:"before_json"`
	AfterJSON  string `gorm:"type:text" json:"after_json"`

	CreatedAt time.Time `gorm:"not null;index" json:"created_at"`
}
