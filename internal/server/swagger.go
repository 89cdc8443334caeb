package server

//go:generate swag init -g internal/server/server.go -o docs/swagger

// @title SentinelScan API
// @version 0.1
// @description Interactive documentation for the SentinelScan coordination API.
// @contact.name SentinelScan Maintainers
// @contact.url https://github.com/sentinelscan/sentinelscan
// @BasePath /
