// Command octogrowl bridges printer lifecycle events to a Growl receiver.
//
//	octogrowl serve -c config.yaml      run the daemon
//	octogrowl test --host mac.local     send a test notification
//	octogrowl discover                  list configured receivers
//	octogrowl emit print-done --file a.gcode --time 125
//	octogrowl config check              validate a config file
//	octogrowl listen                    print what a GNTP client sends
package main
