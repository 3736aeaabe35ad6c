/*
key-client requests key material for one identity from a key-server and saves
it as <name>.key and <name>.crt.

	key-client -h 127.0.0.1 -p 9000 -n alice --out ./keys --verify

Exit status is 0 on success, 1 on a connection or file system error and 2 when
the server answered with an error response, the material failed --verify or the
arguments were invalid. Help is --help or -?.
*/
package main
