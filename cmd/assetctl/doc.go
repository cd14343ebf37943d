/*
Command assetctl is the client of the private content market.

Settings come from a YAML file (see package config) and can be overridden with
flags. A typical sale:

	assetctl --private-key $SELLER register --passphrase pw1 deed.pdf
	assetctl --private-key $SELLER sell <asset-id> 1000
	assetctl --private-key $BUYER offer --passphrase pw2 <asset-id>
	assetctl --private-key $SELLER confirm --passphrase pw1 <asset-id>
	assetctl --private-key $BUYER view --passphrase pw2 --out deed.pdf <asset-id>

assetctl demo runs the same exchange against an in-process ledger and store.
*/
package main
