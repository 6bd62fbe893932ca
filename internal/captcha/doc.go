// Package captcha detects anti-bot challenges on the result list and
// gets them solved.
//
// A detected challenge is first sent to the vision tool. Answers below the
// confidence threshold are discarded. When automatic solving is disabled
// or every attempt fails, the Handler suspends on a Gate until a human
// has solved the challenge, then checks the page again.
package captcha
