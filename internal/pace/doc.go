// Package pace supplies the randomized timing used to make automation look
// human: dwell times, jittered delays between actions, and coin flips for
// optional behavior such as long dwells or jitter scrolls.
//
// Every wait goes through a Pacer so tests can swap real sleeping for an
// instant clock and fix the random source.
package pace
