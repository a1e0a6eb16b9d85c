// Package common holds identifiers shared by every auctioneer binary.
package common

// PackageName prefixes metric names and identifies the service in logs.
const PackageName = "auctioneer"

// Version is overridden at build time with -ldflags "-X".
var Version = "dev"
