// Package mailserver requests store-and-forward history from a mailserver
// peer. The node does the work; this package admits and trusts the peer and
// issues shhext_requestMessages calls with the offline inbox key.
package mailserver
