package model

import "strings"

type DeliveryType string

const (
	DeliveryInsideDhaka  DeliveryType = "INSIDE_DHAKA"
	DeliveryOutsideDhaka DeliveryType = "OUTSIDE_DHAKA"
)

// 大文字・小文字どちらも受ける
func ParseDeliveryType(s string) (DeliveryType, bool) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case string(DeliveryInsideDhaka):
		return DeliveryInsideDhaka, true
	case string(DeliveryOutsideDhaka):
		return DeliveryOutsideDhaka, true
	}
	return "", false
}
