package model

// AuthTenant - API 토큰에서 꺼낸 호출자 정보
type AuthTenant struct {
	Tenant  string
	Subject string
}
