/*
Package codec converts machine definitions to and from bytes.

Decoding is lenient: keys the definition schema does not know are reported as
anomalies (and through optional warning callbacks) instead of failing, so
definitions saved by newer or older versions still load. Only syntactically
broken input is an error.

Two formats are provided:

  - YAML: the human-readable format used on disk. JSON input is accepted too.
  - MsgPack: a compact binary form used by remote definition stores.
*/
package codec
