// Package cmd holds the auctioneer binaries.
//
// auctioneer: runs the coordinator behind the WebSocket, HTTP and SSE
// endpoints.
//
//	go run ./cmd/auctioneer --config=auctioneer.yaml
//	go run ./cmd/auctioneer --fixtures=fixtures.yaml --log-level=debug
//
// auctionctl: inspects and drives a running auctioneer.
//
//	go run ./cmd/auctionctl state
//	go run ./cmd/auctionctl send --token=admin-secret admin-start
//	go run ./cmd/auctionctl watch
//
// Both read YAML configuration where applicable; flags override file values
// only when set explicitly.
package cmd
