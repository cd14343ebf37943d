/*
Command objectstore serves the encrypted object store over HTTP.

Objects are kept in one or more storage backends. With several backends every
write must reach all of them and reads fall back in order:

	objectstore --storage s3://KEY:SECRET@market/objects?endpoint=http://127.0.0.1:9000&path_style=true \
	            --storage leveldb:///var/lib/objectstore

See package httpserver for the routes.
*/
package main
