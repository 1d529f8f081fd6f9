// Package tor routes webclone's HTTP traffic through the Tor network.
//
// Two modes are supported. With an external proxy, Client dials through a
// SOCKS5 listener such as a system Tor daemon on 127.0.0.1:9050. With
// Daemon, a private Tor process is launched through tornago and its SOCKS
// port is used instead. In both modes host names are resolved by the proxy,
// so .onion seed URLs work and no DNS query leaves the machine.
package tor
