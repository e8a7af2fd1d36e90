package bot

const (
	textWelcome         = "Welcome to %s! Just type the name of any movie you want and I will find it for you."
	textEmptyQuery      = "Please provide a movie name."
	textBusy            = "I'm handling a lot of searches right now. Please try again in a few minutes."
	textSearching       = "Understood! I'm now searching for '%s' from my resources. This might take a moment..."
	textNoSources       = "Sorry, I couldn't access my list of movie resources at the moment. Please try again later."
	textNoResults       = "Sorry, I couldn't find '%s' from my available resources. Try checking the spelling or a different movie."
	textResults         = "Here's what I found for '%s'. Please select one (showing up to %d results):"
	textSearchFailed    = "Oops! Something went wrong while I was searching for '%s'. Please try again."
	textFetchingOptions = "Great! Fetching download options for '%s'..."
	textNoOptions       = "Sorry, I couldn't find any download options for '%s' from my resources."
	textOptions         = "Available download options for '%s' (showing up to %d):"
	textFetchingLink    = "Excellent choice: %s for '%s'.\nI'm now trying to get the direct download link from the best available server. This can take a moment..."
	textLinkReady       = "Here is your download link for '%s' (%s):"
	textLinkTooLong     = "Your download link for '%s' (%s) is ready, but too long for a button. Here it is:\n%s"
	textNoLink          = "I'm sorry, I wasn't able to retrieve a direct download link for '%s' (%s) at this time. The servers might be busy, or the link couldn't be extracted automatically. You might try a different option or try again later."
	textExpired         = "My memory of your search has expired or was cleared. Please start a new search."
	textSelectionFailed = "Oops! Something went wrong with that selection. Please try again or start a new search."
)
