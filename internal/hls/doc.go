// Package hls owns the bitrate ladder configuration and master playlist
// emission.
//
// The master manifest format is fixed for interoperability with HLS
// clients: #EXTM3U / #EXT-X-VERSION:3 followed by one
// #EXT-X-STREAM-INF block per ladder entry in ladder order. Variant
// playlists (segment lists, target durations) are produced by the
// encoder and are not re-derived here.
package hls
