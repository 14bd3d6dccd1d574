package cwlib

// Morse encodes the International Morse alphabet as dot/dash strings,
// keyed off the reference word PARIS used to define WPM (see GLOSSARY in
// spec.md). '.' is a dit, '-' is a dah; element and character spacing is
// computed by the scheduler from the current speed and weighting, not
// encoded here.
var Morse = map[byte]string{
	'a': ".-", 'b': "-...", 'c': "-.-.", 'd': "-..", 'e': ".",
	'f': "..-.", 'g': "--.", 'h': "....", 'i': "..", 'j': ".---",
	'k': "-.-", 'l': ".-..", 'm': "--", 'n': "-.", 'o': "---",
	'p': ".--.", 'q': "--.-", 'r': ".-.", 's': "...", 't': "-",
	'u': "..-", 'v': "...-", 'w': ".--", 'x': "-..-", 'y': "-.--",
	'z': "--..",
	'0': "-----", '1': ".----", '2': "..---", '3': "...--", '4': "....-",
	'5': ".....", '6': "-....", '7': "--...", '8': "---..", '9': "----.",
	'.': ".-.-.-", ',': "--..--", '?': "..--..", '/': "-..-.",
	'-': "-....-", '=': "-...-", ' ': "", // space is pure inter-word gap
}

// DitDurationMs returns the length of one dot at the given speed, in
// milliseconds, using the standard PARIS-word timing formula
// (1200 / wpm).
func DitDurationMs(wpm int) float64 {
	if wpm <= 0 {
		wpm = 1
	}
	return 1200.0 / float64(wpm)
}
