package models

// UserRole приходит в JWT от внешнего сервиса идентификации.
type UserRole string

const (
	RoleAdmin  UserRole = "admin"
	RolePlayer UserRole = "player"
)
