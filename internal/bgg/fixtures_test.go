package bgg

const testBaseURL = "https://bgg.test/xmlapi2"

const catanSearchXML = `<?xml version="1.0" encoding="utf-8"?>
<items total="3" termsofuse="https://boardgamegeek.com/xmlapi/termsofuse">
	<item type="boardgame" id="13">
		<name type="primary" value="CATAN"/>
		<yearpublished value="1995"/>
	</item>
	<item type="boardgame" id="926">
		<name type="alternate" value="Catan: Seafarers"/>
		<yearpublished value="1997"/>
	</item>
	<item type="boardgame" id="27710">
		<name type="primary" value="Catan Dice Game"/>
	</item>
</items>`

const catanThingXML = `<?xml version="1.0" encoding="utf-8"?>
<items termsofuse="https://boardgamegeek.com/xmlapi/termsofuse">
	<item type="boardgame" id="13">
		<thumbnail>https://cf.geekdo-images.com/catan_t.jpg</thumbnail>
		<image>https://cf.geekdo-images.com/catan.jpg</image>
		<name type="primary" sortindex="1" value="CATAN"/>
		<name type="alternate" sortindex="1" value="Die Siedler von Catan"/>
		<yearpublished value="1995"/>
		<minplayers value="3"/>
		<maxplayers value="4"/>
		<link type="boardgamecategory" id="1021" value="Economic"/>
		<link type="boardgameexpansion" id="926" value="Catan: Seafarers"/>
		<link type="boardgameexpansion" id="325" value="Catan: Cities &amp; Knights"/>
		<statistics page="1">
			<ratings>
				<average value="7.09712"/>
			</ratings>
		</statistics>
	</item>
</items>`

const seafarersThingXML = `<?xml version="1.0" encoding="utf-8"?>
<items>
	<item type="boardgameexpansion" id="926">
		<image>https://cf.geekdo-images.com/seafarers.jpg</image>
		<name type="primary" sortindex="1" value="Catan: Seafarers"/>
		<yearpublished value="1997"/>
		<minplayers value="3"/>
		<maxplayers value="4"/>
		<link type="boardgamecategory" id="1042" value="Expansion for Base-game"/>
		<link type="boardgameexpansion" id="13" value="CATAN" inbound="true"/>
		<statistics page="1"><ratings><average value="7.14"/></ratings></statistics>
	</item>
</items>`

const citiesThingXML = `<?xml version="1.0" encoding="utf-8"?>
<items>
	<item type="boardgameexpansion" id="325">
		<name type="primary" sortindex="1" value="Catan: Cities &amp; Knights"/>
		<link type="boardgamecategory" id="1042" value="Expansion for Base-game"/>
	</item>
</items>`

const diceThingXML = `<?xml version="1.0" encoding="utf-8"?>
<items>
	<item type="boardgame" id="27710">
		<image>https://cf.geekdo-images.com/dice.jpg</image>
		<name type="primary" sortindex="1" value="Catan Dice Game"/>
		<yearpublished value="2007"/>
		<minplayers value="1"/>
		<maxplayers value="4"/>
		<statistics page="1"><ratings><average value="6.25"/></ratings></statistics>
	</item>
</items>`

const noPrimaryNameThingXML = `<?xml version="1.0" encoding="utf-8"?>
<items>
	<item type="boardgame" id="99">
		<name type="alternate" value="Nameless"/>
	</item>
</items>`

const emptyItemsXML = `<?xml version="1.0" encoding="utf-8"?><items total="0"></items>`
